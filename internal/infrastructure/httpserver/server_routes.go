package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	novels := api.Group("/novels")
	novels.GET("", s.listNovels)
	novels.POST("", s.createNovel)
	novels.GET("/popular", s.popularNovels)
	novels.GET("/:id", s.getNovel)
	novels.PUT("/:id", s.updateNovel)
	novels.DELETE("/:id", s.deleteNovel)
	novels.GET("/:id/cover", s.novelCover)

	api.GET("/genres", s.listGenres)

	users := api.Group("/users")
	users.GET("/:id", s.getUser)
	users.PUT("/:id", s.updateUser)
	users.GET("/:id/avatar", s.userAvatar)

	api.POST("/events", s.receiveEvent)
	api.DELETE("/cache", s.clearCache)
}
