package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/platform/internal/api/apierror"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/threads?"+query, nil)
	return c
}

func TestParse(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"", 1, 10, 0},
		{"page=3", 3, 10, 20},
		{"page=2&limit=25", 2, 25, 25},
		{"limit=100", 1, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := Default(contextWithQuery(tt.query))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		query string
		field string
	}{
		{"page=0", "page"},
		{"page=abc", "page"},
		{"limit=0", "limit"},
		{"limit=101", "limit"},
		{"limit=-5", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := Default(contextWithQuery(tt.query))
			require.Error(t, err)

			apiErr := apierror.Classify(err)
			assert.Equal(t, 422, apiErr.Status)
			assert.Contains(t, apiErr.Fields, tt.field)
		})
	}
}

func TestParse_CustomBounds(t *testing.T) {
	p, err := Parse(contextWithQuery(""), 20, 50)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Limit)

	_, err = Parse(contextWithQuery("limit=51"), 20, 50)
	assert.Error(t, err)
}

func TestWithTotal(t *testing.T) {
	p := Page{Page: 2, Limit: 10, Offset: 10}.WithTotal(42)
	assert.Equal(t, 42, p.Total)
	assert.Equal(t, 2, p.Page)
}
