package main

import (
	"context"
	"time"

	"github.com/cppla/clubhouse/config"
	"github.com/cppla/clubhouse/models"
	"github.com/cppla/clubhouse/routes"
	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	clubs := services.NewClubService(db, services.NewPolicy())
	if err := clubs.SeedClubs(ctx, clubSeeds(cfg.Clubs)); err != nil {
		utils.Sugar.Fatalf("seeding clubs failed: %v", err)
	}
	cancel()

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func clubSeeds(seeds []config.ClubSeed) []models.Club {
	clubs := make([]models.Club, 0, len(seeds))
	for _, s := range seeds {
		clubs = append(clubs, models.Club{
			Name:        s.Name,
			Slug:        s.Slug,
			Description: s.Description,
			Icon:        s.Icon,
		})
	}
	return clubs
}
