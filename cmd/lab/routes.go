package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"cmt-backend/http-server/calculate"
	getdefinition "cmt-backend/http-server/definitions/get"
	rundefinition "cmt-backend/http-server/definitions/run"
	computereport "cmt-backend/http-server/report/compute"
	getreport "cmt-backend/http-server/report/get"
	savereport "cmt-backend/http-server/report/save"
	gettemplate "cmt-backend/http-server/template/get"
	savetemplate "cmt-backend/http-server/template/save"
	uptemplate "cmt-backend/http-server/template/update"
	"cmt-backend/http-server/template/upload"
	"cmt-backend/http-server/template/validate"
	"cmt-backend/internal/config"
	"cmt-backend/internal/middleware/auth"
	"cmt-backend/internal/service"
)

type Storage interface {
	gettemplate.TemplateJSON
	savetemplate.TemplateCreateProvider
	uptemplate.TemplateUpdateProvider
}

type Services struct {
	Templates   *service.TemplateService
	Definitions *service.DefinitionService
	Reports     *service.ReportService
}

func routes(cfg config.Config, log *slog.Logger, storage Storage, svc Services) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Group(func(r chi.Router) {
		r.Use(auth.CurrentUser(log, cfg.JWTSecret))

		r.Post("/api/calculate", calculate.Calculate(log))
		r.Post("/api/compliance", calculate.EvaluateCompliance(log))

		r.Get("/api/templates", gettemplate.GetTemplates(log, storage))
		r.Get("/api/templates/{code}", gettemplate.GetTemplateByCode(log, storage))
		r.Post("/api/templates/{code}/validate", validate.ValidateRows(log, svc.Templates))
		r.Post("/api/templates/{code}/import", upload.ImportRows(log, svc.Templates))

		r.Get("/api/definitions", getdefinition.GetDefinitions(log, svc.Definitions))
		r.Get("/api/definitions/{code}", getdefinition.GetDefinition(log, svc.Definitions))
		r.Post("/api/definitions/{code}/run", rundefinition.RunDefinition(log, svc.Definitions))

		r.Post("/api/reports", savereport.SaveReport(log, svc.Reports))
		r.Get("/api/reports/{id}", getreport.GetReport(log, svc.Reports))
		r.Post("/api/reports/{id}/compute", computereport.ComputeReport(log, svc.Reports))
	})

	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Get("/templates", gettemplate.GetAllTemplatesAdmin(log, storage))
	adminRouter.Post("/templates", savetemplate.SaveTemplateAdmin(log, storage))
	adminRouter.Get("/templates/{code}", gettemplate.GetTemplateByCodeAdmin(log, storage))
	adminRouter.Put("/templates/{code}", uptemplate.UpdateTemplateAdmin(log, storage))

	router.Mount("/api/admin", adminRouter)

	return router
}
