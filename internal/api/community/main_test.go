package community

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validation.Register()
	os.Exit(m.Run())
}
