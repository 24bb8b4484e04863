package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   logroot/ (refs.jsonl)
	//     sub/nested/
	//   cfgroot/ (refman.yaml)
	//   sysroot/ (.refman)
	//   empty/
	base := t.TempDir()
	logRoot := filepath.Join(base, "logroot")
	nested := filepath.Join(logRoot, "sub", "nested")
	cfgRoot := filepath.Join(base, "cfgroot")
	sysRoot := filepath.Join(base, "sysroot")
	empty := filepath.Join(base, "empty")

	for _, dir := range []string{nested, cfgRoot, filepath.Join(sysRoot, ".refman"), empty} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(logRoot, "refs.jsonl"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfgRoot, ConfigFileName), []byte("index_cache: true\n"), 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "log at start", startPath: logRoot, wantRoot: logRoot},
		{name: "nested below log", startPath: nested, wantRoot: logRoot},
		{name: "config file", startPath: cfgRoot, wantRoot: cfgRoot},
		{name: "system dir", startPath: sysRoot, wantRoot: sysRoot},
		{name: "no root", startPath: empty, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}
}
