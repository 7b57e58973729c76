package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	tests := []struct {
		name, in, user, pass string
		want                 []string
	}{
		{
			name: "native dsn untouched",
			in:   "root:pw@tcp(127.0.0.1:3306)/auth?parseTime=true",
			want: []string{"root:pw@tcp(127.0.0.1:3306)/auth?parseTime=true"},
		},
		{
			name: "url form with defaults",
			in:   "mysql://root:pw@127.0.0.1:3306/auth",
			want: []string{"root:pw@tcp(127.0.0.1:3306)/auth?", "parseTime=true", "charset=utf8mb4"},
		},
		{
			name: "jdbc form and overrides",
			in:   "jdbc:mysql://u:p@db:3306/auth?useSSL=false&serverTimezone=UTC&characterEncoding=utf8",
			user: "svc", pass: "secret",
			want: []string{"svc:secret@tcp(db:3306)/auth?", "tls=false", "loc=UTC", "charset=utf8"},
		},
		{
			name: "explicit driver params win",
			in:   "mysql://h:3306/db?charset=latin1&characterEncoding=utf8&user=q&useSSL=skip-verify&timeout=5s",
			want: []string{"q@tcp(h:3306)/db?", "charset=latin1", "tls=skip-verify", "timeout=5s", "parseTime=true"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeMySQLDSN(tt.in, tt.user, tt.pass)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			assert.NotContains(t, got, "useSSL")
			assert.NotContains(t, got, "characterEncoding")
		})
	}
	assert.Equal(t, "", normalizeMySQLDSN("  ", "", ""))
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(h:3306)/db", maskDSN("root:pw@tcp(h:3306)/db"))
	assert.Equal(t, "nouser", maskDSN("nouser"))
	assert.Equal(t, "root@tcp(h)/db", maskDSN("root@tcp(h)/db"))
}

func TestDialector(t *testing.T) {
	l := zap.NewNop()

	d, err := Dialector(Opts{Driver: "postgres", DSN: "host=x"}, l)
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(Opts{Driver: "mysql", DSN: "mysql://u:p@h:3306/db"}, l)
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = Dialector(Opts{Driver: "oracle"}, l)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
	assert.True(t, strings.Contains(err.Error(), "oracle"))
}
