package project

type ProjectResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}
