package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/textmatch"
)

func TestDefaultIngestionCatalog_MatchAreas(t *testing.T) {
	areas := DefaultIngestionCatalog.MatchAreas()

	tests := []struct {
		address string
		want    string
	}{
		{"日本、〒509-2202 岐阜県下呂市森1234", "下呂"},
		{"日本、〒509-2207 岐阜県下呂市湯之島801-2", "下呂"},
		{"岐阜県下呂市幸田1000", "下呂"},
		{"岐阜県下呂市萩原町萩原1166", "萩原"},
		{"岐阜県下呂市小坂町大島1600", "小坂"},
		{"日本、〒506-0008 岐阜県高山市森下町1-2", ""},
		{"東京都港区虎ノ門森タワー", ""},
		{"愛知県額田郡幸田町菱池", ""},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, ok := textmatch.MatchArea(tt.address, areas)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
