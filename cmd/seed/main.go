package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/careloop/conditiontrack/internal/adapters/database"
	"github.com/careloop/conditiontrack/internal/adapters/events"
	"github.com/careloop/conditiontrack/internal/adapters/store"
	"github.com/careloop/conditiontrack/internal/application/services"
	"github.com/careloop/conditiontrack/internal/domain/repositories"
	"github.com/careloop/conditiontrack/internal/infrastructure/clients/postgres"
	"github.com/careloop/conditiontrack/internal/infrastructure/observability"
	"github.com/careloop/conditiontrack/pkg/config"
)

type seedCondition struct {
	name        string
	medications []services.MedicationInput
	treatments  []string
}

var sampleConditions = []seedCondition{
	{
		name: "Asma",
		medications: []services.MedicationInput{
			{Name: "Salbutamol", Dosage: "100mcg", Frequency: "cada 6 horas"},
			{Name: "Budesonida", Dosage: "200mcg", Frequency: "cada 12 horas"},
		},
		treatments: []string{"Evitar alérgenos"},
	},
	{
		name: "Diabetes",
		medications: []services.MedicationInput{
			{Name: "Metformina", Dosage: "850mg", Frequency: "con cada comida"},
		},
		treatments: []string{"Dieta baja en azúcares", "Ejercicio regular"},
	},
	{
		name: "Hipertensión",
		medications: []services.MedicationInput{
			{Name: "Losartán", Dosage: "50mg", Frequency: "una vez al día"},
		},
		treatments: []string{"Reducción de sal"},
	},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("conditiontrack-seed", cfg.Server.Env)

	var repo repositories.ConditionRepository
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		repo = database.NewConditionAdapter(pgClient)
	default:
		fileStore, err := store.NewFileAdapter(cfg.Store.FilePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Store.FilePath).Msg("failed to open record store")
		}
		repo = fileStore
	}

	bus := events.NewMemoryEventBus()
	defer bus.Close()
	service := services.NewRecordService(repo, bus)

	ctx := context.Background()
	for _, sample := range sampleConditions {
		condition, err := service.CreateCondition(ctx, sample.name)
		if err != nil {
			log.Fatal().Err(err).Str("condition", sample.name).Msg("failed to seed condition")
		}

		for _, medication := range sample.medications {
			if _, err := service.AddMedication(ctx, condition.ID, medication); err != nil {
				log.Fatal().Err(err).Str("medication", medication.Name).Msg("failed to seed medication")
			}
		}
		for _, treatment := range sample.treatments {
			if _, err := service.AddTreatment(ctx, condition.ID, treatment); err != nil {
				log.Fatal().Err(err).Str("treatment", treatment).Msg("failed to seed treatment")
			}
		}

		log.Info().
			Str("id", condition.ID).
			Str("name", condition.Name).
			Int("medications", len(sample.medications)).
			Int("treatments", len(sample.treatments)).
			Msg("seeded condition")
	}

	log.Info().Int("conditions", len(sampleConditions)).Msg("seeding complete")
}
