package httpdto

type DownloadRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type DownloadResponse struct {
	URL string `json:"url"`
}
