package transport

import "net/http"

type Handler interface {
	upload(w http.ResponseWriter, r *http.Request)
	batchUpload(w http.ResponseWriter, r *http.Request)
	webhookUpload(w http.ResponseWriter, r *http.Request)
	file(w http.ResponseWriter, r *http.Request)
	thumbnail(w http.ResponseWriter, r *http.Request)
	status(w http.ResponseWriter, r *http.Request)
	listFiles(w http.ResponseWriter, r *http.Request)
	stats(w http.ResponseWriter, r *http.Request)
	health(w http.ResponseWriter, r *http.Request)
}

type router struct {
	h Handler
}

func NewRouter(h Handler) *router {
	return &router{h: h}
}

func (r *router) MountRoutes(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("/upload/", r.h.upload)
	mux.HandleFunc("/batch-upload/", r.h.batchUpload)
	mux.HandleFunc("/webhook/upload/", r.h.webhookUpload)
	mux.HandleFunc("/files/", r.h.file)
	mux.HandleFunc("/thumbnails/", r.h.thumbnail)
	mux.HandleFunc("/status/", r.h.status)
	mux.HandleFunc("/api/files", r.h.listFiles)
	mux.HandleFunc("/api/files/status", r.h.stats)
	mux.HandleFunc("/health", r.h.health)

	return mux
}
