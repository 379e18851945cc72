package adapters

import (
	"testing"
	"time"
)

func TestClusterName(t *testing.T) {
	cases := map[string]string{
		"cluster0-shard-00-00.abcde.mongodb.net": "cluster0",
		"standalone-host.abcde.mongodb.net":       "standalone-host.abcde.mongodb.net",
	}
	for in, want := range cases {
		if got := ClusterName(in); got != want {
			t.Errorf("ClusterName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplaceClusterName(t *testing.T) {
	mapping := ClusterMapping{"cluster0": "prod-cluster"}
	in := "cluster0-shard-00-00.abcde.mongodb.net"
	want := "prod-cluster-shard-00-00.abcde.mongodb.net"
	if got := ReplaceClusterName(in, mapping); got != want {
		t.Fatalf("ReplaceClusterName() = %q, want %q", got, want)
	}
}

func TestReplaceClusterNameNoAlias(t *testing.T) {
	in := "cluster0-shard-00-00.abcde.mongodb.net"
	if got := ReplaceClusterName(in, ClusterMapping{}); got != in {
		t.Fatalf("ReplaceClusterName() = %q, want unchanged %q", got, in)
	}
}

func TestDefaultStartTimeEpoch(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	got := DefaultStartTimeEpoch(7, now)
	want := float64(now.AddDate(0, 0, -7).Unix())
	if got != want {
		t.Fatalf("DefaultStartTimeEpoch() = %v, want %v", got, want)
	}
}
