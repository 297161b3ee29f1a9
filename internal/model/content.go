package model

import "time"

// HomeContent is the single banner block shown on the public home page.
type HomeContent struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Image    string `json:"image"`
}

// Program kinds offered by the institute.
const (
	ProgramCarrera   = "Carrera"
	ProgramDiplomado = "Diplomado"
)

type Program struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Duration string `json:"duration"`
	Price    string `json:"price"`
	Image    string `json:"image"`
	Visible  bool   `json:"visible"`
}

type GalleryImage struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Visible   bool      `json:"visible"`
	CreatedAt time.Time `json:"created_at"`
}

type Testimonial struct {
	ID      int64  `json:"id"`
	Phrase  string `json:"phrase"`
	Name    string `json:"name"`
	Year    int    `json:"year"`
	Visible bool   `json:"visible"`
}
