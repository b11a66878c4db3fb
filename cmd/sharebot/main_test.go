package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/sharebot/core/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, buildinfo.String("sharebot")+"\n", out.String())
}

func TestRootFlags(t *testing.T) {
	root := newRootCommand()
	cfg := root.Flags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
	assert.Equal(t, "", cfg.DefValue)

	env := root.Flags().Lookup("env-file")
	require.NotNil(t, env)
	assert.Equal(t, ".env", env.DefValue)
}
