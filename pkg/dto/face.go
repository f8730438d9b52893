package dto

import "github.com/google/uuid"

type EnrollFaceResponse struct {
	TemplateID uuid.UUID `json:"template_id"`
	Label      string    `json:"label"`
	Enrolled   int       `json:"enrolled"`
	Skipped    int       `json:"skipped"`
}

type FaceResponse struct {
	ID      uuid.UUID `json:"id"`
	Label   string    `json:"label"`
	Samples int       `json:"samples"`
}

type FaceListResponse struct {
	Faces []FaceResponse `json:"faces"`
	Total int            `json:"total"`
}

type MatchResultResponse struct {
	Label    string  `json:"label"`
	Distance float32 `json:"distance"`
}

type RecogniseResponse struct {
	Results []MatchResultResponse `json:"results"`
	Total   int                   `json:"total"`
}
