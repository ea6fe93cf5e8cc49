package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	v := Version()
	require.True(t, strings.HasPrefix(v, tag))

	previous := status
	status = "M go.mod"
	defer func() { status = previous }()
	require.Contains(t, Version(), tag+"-dirty")
}
