package plugins

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gotest.tools/v3/assert"

	"github.com/linht/nrf24-manager/nrf24"
)

func TestRegistry(t *testing.T) {
	assert.DeepEqual(t, Names(), []string{"profiles", "radio"})

	factory, ok := Get("radio")
	assert.Check(t, ok)
	_, err := factory("not a RadioConfig")
	assert.ErrorContains(t, err, "expected RadioConfig")

	_, ok = Get("docker")
	assert.Check(t, !ok)

	defer func() {
		assert.Check(t, recover() != nil)
	}()
	Register("radio", nil)
}

func TestRadioPluginIsTokenAware(t *testing.T) {
	var p Plugin = &RadioPlugin{}
	_, ok := p.(TokenAware)
	assert.Check(t, ok)
}

func TestSendFailure(t *testing.T) {
	app := fiber.New()
	app.Get("/closed", func(c *fiber.Ctx) error { return SendFailure(c, ErrRadioClosed) })
	app.Get("/empty", func(c *fiber.Ctx) error { return SendFailure(c, nrf24.ErrRxEmpty) })
	app.Get("/bus", func(c *fiber.Ctx) error {
		return SendFailure(c, &nrf24.BusError{Op: "NOP", Err: errors.New("eio")})
	})

	for path, want := range map[string]int{"/closed": 409, "/empty": 404, "/bus": 500} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		assert.NilError(t, err)
		assert.Equal(t, resp.StatusCode, want, path)
	}
}
