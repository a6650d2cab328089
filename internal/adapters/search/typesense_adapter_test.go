package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	tsclient "github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/typesense"
)

func TestBuildKeywords(t *testing.T) {
	facility := &entities.Facility{
		Name:     "喫茶　まつ",
		NameKana: "ｷｯｻ ﾏﾂ",
		Area:     "本町",
		Category: "cafe",
	}

	assert.Equal(t, []string{"喫茶 まつ", "キッサ マツ", "喫茶まつ", "キッサマツ", "本町", "cafe"}, BuildKeywords(facility))
}

func TestBuildKeywordsNil(t *testing.T) {
	assert.Nil(t, BuildKeywords(nil))
}

func TestBuildFacilityDocument(t *testing.T) {
	f := &entities.Facility{ID: "f1", Name: "道の駅", Area: "港地区", Category: "shop", IsVerified: true, CreatedAt: time.Unix(100, 0)}

	doc := buildFacilityDocument(f)
	assert.NotContains(t, doc, "location")
	assert.NotContains(t, doc, "name_kana")
	assert.Equal(t, int64(100), doc["created_at"])

	f.SetCoordinates(35, 139)
	doc = buildFacilityDocument(f)
	assert.Equal(t, []float64{35, 139}, doc["location"])
}

func TestBuildFilter(t *testing.T) {
	assert.Equal(t, "is_verified:=true", buildFilter(repositories.SearchParams{}))
	assert.Equal(t, "is_verified:=true && area:=`本町` && category:=`cafe`",
		buildFilter(repositories.SearchParams{Area: "本町", Category: "ca`fe"}))
}

func TestTypesenseAdapter_Search(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/facilities/documents/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"found":2,"page":1,"hits":[{"document":{"id":"f2"}},{"document":{"id":"f1"}}]}`))
	}))
	defer server.Close()

	client := tsclient.NewClientFromTypesense(typesense.NewClient(
		typesense.WithServer(server.URL),
		typesense.WithAPIKey("test"),
	))
	adapter := NewTypesenseAdapter(client)

	ids, err := adapter.Search(context.Background(), repositories.SearchParams{Query: "まつ", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f1"}, ids)
	assert.Equal(t, "まつ", gotQuery)
}
