package net

import (
	"testing"

	ma "github.com/multiformats/go-multiaddr"
)

func addrs(t *testing.T, ss ...string) []ma.Multiaddr {
	res := make([]ma.Multiaddr, 0, len(ss))
	for _, s := range ss {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			t.Fatalf("parsing %s: %v", s, err)
		}
		res = append(res, a)
	}
	return res
}

func strs(as []ma.Multiaddr) []string {
	res := make([]string, 0, len(as))
	for _, a := range as {
		res = append(res, a.String())
	}
	return res
}

func TestFilterReachable(t *testing.T) {
	testCases := []struct {
		name     string
		peer     []string
		own      []string
		expected []string
	}{
		{
			name:     "loopback only is kept",
			peer:     []string{"/ip4/127.0.0.1/tcp/4001"},
			own:      []string{"/ip4/10.1.0.1/tcp/4001"},
			expected: []string{"/ip4/127.0.0.1/tcp/4001"},
		},
		{
			name:     "loopback dropped when others exist",
			peer:     []string{"/ip4/127.0.0.1/tcp/4001", "/ip4/8.8.8.8/tcp/4001"},
			own:      []string{"/ip4/1.2.3.4/tcp/4001"},
			expected: []string{"/ip4/8.8.8.8/tcp/4001"},
		},
		{
			name:     "private peers in same /16",
			peer:     []string{"/ip4/10.1.2.3/tcp/4001", "/ip4/10.2.0.1/tcp/4001"},
			own:      []string{"/ip4/10.1.9.9/tcp/4001"},
			expected: []string{"/ip4/10.1.2.3/tcp/4001"},
		},
		{
			name:     "public node drops private addresses",
			peer:     []string{"/ip4/192.168.1.5/tcp/4001", "/ip4/5.6.7.8/tcp/4001"},
			own:      []string{"/ip4/1.2.3.4/tcp/4001"},
			expected: []string{"/ip4/5.6.7.8/tcp/4001"},
		},
		{
			name:     "private node keeps public addresses",
			peer:     []string{"/ip4/5.6.7.8/tcp/4001"},
			own:      []string{"/ip4/192.168.1.1/tcp/4001"},
			expected: []string{"/ip4/5.6.7.8/tcp/4001"},
		},
		{
			name:     "multi-homed node",
			peer:     []string{"/ip4/192.168.1.5/tcp/4001"},
			own:      []string{"/ip4/1.2.3.4/tcp/4001", "/ip4/192.168.7.7/tcp/4001"},
			expected: []string{"/ip4/192.168.1.5/tcp/4001"},
		},
		{
			name:     "dns kept",
			peer:     []string{"/dns4/example.com/tcp/4001"},
			own:      []string{"/ip4/1.2.3.4/tcp/4001"},
			expected: []string{"/dns4/example.com/tcp/4001"},
		},
		{
			name:     "no own address",
			peer:     []string{"/ip4/127.0.0.1/tcp/1", "/ip4/10.0.0.1/tcp/1"},
			own:      []string{"/ip4/127.0.0.1/tcp/1"},
			expected: []string{"/ip4/10.0.0.1/tcp/1"},
		},
	}

	for _, tc := range testCases {
		got := strs(FilterReachable(addrs(t, tc.peer...), addrs(t, tc.own...)))
		if len(got) != len(tc.expected) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
		for i := range got {
			if got[i] != tc.expected[i] {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
			}
		}
	}
}
