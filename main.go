package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"herdmind/config"
	"herdmind/handlers"
	"herdmind/middleware"
	"herdmind/models"
	"herdmind/routes"
	"herdmind/services"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	err = db.AutoMigrate(
		&models.Question{},
		&models.Session{},
		&models.Round{},
		&models.Participant{},
		&models.Response{},
		&models.Invitation{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient := config.InitRedis(cfg)

	questionService := services.NewQuestionService(db)
	if err := questionService.SeedDefaultQuestions(); err != nil {
		log.Fatal().Err(err).Msg("failed to seed question bank")
	}

	hub := services.NewHub()
	go hub.Run()

	scheduler := services.NewRoundScheduler(clockwork.NewRealClock())
	sessionService := services.NewSessionService(db, redisClient, hub, scheduler, nil)

	// Deadline expiry finalizes the round; the engine never waits on the
	// clock itself.
	scheduler.SetFinalizer(func(sessionID, roundID string) error {
		_, err := sessionService.FinalizeRound(sessionID, roundID)
		return err
	})
	hub.SetSnapshotSource(sessionService.Snapshot)

	sessionHandler := handlers.NewSessionHandler(sessionService)
	questionHandler := handlers.NewQuestionHandler(questionService)

	router := gin.Default()
	router.Use(middleware.CORS(cfg.CORSOrigins))
	routes.SetupRoutes(router, sessionHandler, questionHandler, hub, sessionService)

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := router.Run(cfg.BindAddress + ":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
