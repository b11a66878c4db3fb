package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "v1.2.3", "abcdef0", ""
	assert.Equal(t, "sharebot v1.2.3 (commit abcdef0)", String("sharebot"))

	Date = "2026-03-01T12:00:00Z"
	assert.Equal(t, "sharebot v1.2.3 (commit abcdef0, built 2026-03-01T12:00:00Z)", String("sharebot"))
}
