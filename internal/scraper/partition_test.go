package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartition_IsDeterministicAndInRange(t *testing.T) {
	sigs := []string{"sigA", "sigB", "sigC", "sigD", "sigE"}
	for _, s := range sigs {
		p := Partition(s, 3)
		require.GreaterOrEqual(t, p, int32(0))
		require.Less(t, p, int32(3))
		require.Equal(t, p, Partition(s, 3), "partition must be stable across calls")
	}
}

func TestPartition_SpreadsAcrossPartitions(t *testing.T) {
	seen := make(map[int32]bool)
	for i := 0; i < 200; i++ {
		sig := string(rune('a'+(i%26))) + string(rune('0'+(i/26)%10))
		seen[Partition(sig, 3)] = true
	}
	require.Len(t, seen, 3, "200 distinct signatures should land in every partition")
}
