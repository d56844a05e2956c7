package stub

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ReplacesEveryOccurrence(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		count int
	}{
		{"none", "localhost:80 {\n}\n", 0},
		{"one", "fastcgi / FPM_ADDRESS php\n", 1},
		{"many", "FPM_ADDRESS FPM_ADDRESS\nx FPM_ADDRESS", 3},
		{"adjacent", "FPM_ADDRESSFPM_ADDRESS", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.src, map[string]string{FPMAddress: "unix:/run/php/php-fpm.sock"})
			require.NoError(t, err)
			assert.NotContains(t, out, FPMAddress)
			assert.Equal(t, tt.count, strings.Count(out, "unix:/run/php/php-fpm.sock"))
		})
	}
}

func TestRender_LongerTokenWins(t *testing.T) {
	src := "ExecStart=VALET_PATH/bin/caddy -conf VALET_HOME_PATH/Caddyfile"
	out, err := Render(src, map[string]string{
		ValetPath: "/opt/valet",
		HomePath:  "/home/dev/.valet",
	})
	require.NoError(t, err)
	assert.Equal(t, "ExecStart=/opt/valet/bin/caddy -conf /home/dev/.valet/Caddyfile", out)
}

func TestRender_ValuesAreNotRescanned(t *testing.T) {
	out, err := Render("a FPM_ADDRESS b", map[string]string{FPMAddress: "127.0.0.1:9000"})
	require.NoError(t, err)
	assert.Equal(t, "a 127.0.0.1:9000 b", out)
}

func TestRender_ValueContainingTokenText(t *testing.T) {
	out, err := Render("conf VALET_HOME_PATH/Caddyfile", map[string]string{
		HomePath: "/home/FPM_ADDRESS_dev/.valet",
	})
	require.NoError(t, err)
	assert.Equal(t, "conf /home/FPM_ADDRESS_dev/.valet/Caddyfile", out)
}

func TestRender_MissingValueIsUnresolved(t *testing.T) {
	_, err := Render("import VALET_HOME_PATH/Caddy/*\nfastcgi / FPM_ADDRESS php", map[string]string{
		FPMAddress: "127.0.0.1:9000",
	})
	require.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), HomePath)
}

func TestRender_EmptyToken(t *testing.T) {
	_, err := Render("x", map[string]string{"": "y"})
	assert.Error(t, err)
}

func TestUnresolved(t *testing.T) {
	assert.Empty(t, Unresolved("plain text"))
	assert.Equal(t, []string{FPMAddress, HomePath}, Unresolved("FPM_ADDRESS VALET_HOME_PATH"))
	assert.Equal(t, []string{ValetPath}, Unresolved("VALET_PATH/bin"))
}

func TestRender_ShippedStubs(t *testing.T) {
	values := map[string]string{
		FPMAddress: "unix:/run/php/php8.2-fpm.sock",
		HomePath:   "/home/dev/.valet",
		ValetPath:  "/opt/valet",
	}
	for _, name := range []string{"Caddyfile", "caddy.service"} {
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("..", "..", "stubs", name))
			require.NoError(t, err)
			require.NotEmpty(t, Unresolved(string(src)), "stub carries placeholders")

			out, err := Render(string(src), values)
			require.NoError(t, err)
			assert.Empty(t, Unresolved(out))
			assert.Contains(t, out, "/home/dev/.valet")
		})
	}
}
