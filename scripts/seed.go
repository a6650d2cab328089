package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/database"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

type seedFacility struct {
	name, kana, address, area, category string
	lat, lng                            float64
	notes                               []seedNote
}

type seedNote struct {
	note, category, season string
	tags                   []string
}

// local development data only
var seedFacilities = []seedFacility{
	{
		name: "喫茶まつ", kana: "きっさまつ", address: "本町1-2-3", area: "本町", category: "gourmet",
		lat: 35.681236, lng: 139.767125,
		notes: []seedNote{
			{note: "ナポリタンが懐かしい味。朝の時間帯は空いています。", category: "gourmet", tags: []string{"モーニング", "昭和レトロ"}},
			{note: "窓際の席から見る商店街の景色が好きです。", category: "healing", season: "autumn"},
		},
	},
	{
		name: "みなと温泉", kana: "みなとおんせん", address: "港町2-8", area: "港地区", category: "healing",
		lat: 35.678901, lng: 139.771234,
		notes: []seedNote{
			{note: "露天風呂から夕日が見えます。平日の夕方がおすすめ。", category: "scenery", tags: []string{"温泉", "夕日"}},
		},
	},
	{
		name: "北本町公園", address: "北本町3-1", area: "北本町", category: "scenery",
		lat: 35.690012, lng: 139.760044,
		notes: []seedNote{
			{note: "春は桜のトンネルになります。", category: "scenery", season: "spring", tags: []string{"桜", "散歩"}},
		},
	},
}

func main() {
	ctx := context.Background()

	env, err := bootstrap.Open(ctx, bootstrap.Options{Service: "seed", BatchLogging: true, WithTypesense: true})
	if err != nil {
		log.Error().Err(err).Msg("seed setup failed")
		os.Exit(1)
	}
	defer env.Close()

	facilityRepo := database.NewFacilityAdapter(env.Postgres)
	recommendations := services.NewRecommendationService(
		database.NewRecommendationAdapter(env.Postgres),
		facilityRepo,
		nil,
		nil,
		env.Config.Session.IPHashSalt,
		env.Config.Session.EditWindow,
	)
	searchRepo := env.SearchRepo()

	var facilities, notes int
	for _, sf := range seedFacilities {
		now := time.Now()
		f := &entities.Facility{
			ID:         uuid.New().String(),
			Name:       sf.name,
			NameKana:   sf.kana,
			Address:    sf.address,
			Area:       sf.area,
			Category:   sf.category,
			IsVerified: true,
			CreatedBy:  entities.FacilityCreatorAdmin,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		f.SetCoordinates(sf.lat, sf.lng)

		if err := facilityRepo.Create(ctx, f); err != nil {
			log.Warn().Err(err).Str("name", f.Name).Msg("failed to seed facility")
			continue
		}
		facilities++
		if searchRepo != nil {
			if err := searchRepo.Index(ctx, f); err != nil {
				log.Warn().Err(err).Str("name", f.Name).Msg("failed to index seeded facility")
			}
		}

		for _, sn := range sf.notes {
			_, err := recommendations.Create(ctx, services.CreateRecommendationInput{
				FacilityID:     f.ID,
				Note:           sn.note,
				SourceType:     "visit",
				ReviewCategory: sn.category,
				Season:         sn.season,
				Tags:           sn.tags,
				IsAnonymous:    true,
				ClientIP:       "127.0.0.1",
			})
			if err != nil {
				log.Warn().Err(err).Str("facility", f.Name).Msg("failed to seed recommendation")
				continue
			}
			notes++
		}
	}

	log.Info().Int("facilities", facilities).Int("recommendations", notes).Msg("seed complete")
}
