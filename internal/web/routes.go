package web

import (
	"github.com/facemed/face-med/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	maxUpload := s.config.Storage.MaxUploadSize

	patientsHandler := handlers.NewPatientsHandler(s.service, maxUpload, s.logger)
	facesHandler := handlers.NewFacesHandler(s.service, maxUpload, s.logger)
	recordsHandler := handlers.NewRecordsHandler(s.service, maxUpload, s.logger)

	s.router.Get("/", handlers.HealthCheck)

	s.router.Post("/register-patient", patientsHandler.Register)
	s.router.Get("/patient/{id}", patientsHandler.Get)

	s.router.Post("/register-face", facesHandler.Register)
	s.router.Post("/recognize", facesHandler.Recognize)
	s.router.Post("/recognize-face", facesHandler.RecognizeFace)

	s.router.Get("/records/{patient_id}", recordsHandler.List)
	s.router.Post("/upload-record/{patient_id}", recordsHandler.Upload)
	s.router.Get("/data/uploads/{patient_id}/{filename}", recordsHandler.DownloadUpload)
	s.router.Get("/download/{filename}", recordsHandler.Download)
}
