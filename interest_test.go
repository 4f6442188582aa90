package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterest_String(t *testing.T) {
	cases := []struct {
		i    Interest
		want string
	}{
		{0, "NONE"},
		{Read, "READ"},
		{Write, "WRITE"},
		{Except, "EXCEPT"},
		{Read | Write, "READ|WRITE"},
		{Read | Write | Except, "READ|WRITE|EXCEPT"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.i.String())
	}
}

func TestMechanism_String(t *testing.T) {
	cases := []struct {
		m    Mechanism
		want string
	}{
		{None, "NONE"},
		{Poll, "POLL"},
		{Select, "SELECT"},
		{Epoll, "EPOLL"},
		{Kqueue, "KQUEUE"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.m.String())
	}
	require.Equal(t, "UNKNOWN", Mechanism(99).String())
}

func TestHandle_Sentinel(t *testing.T) {
	require.Equal(t, Handle(-1), NoHandle)
}
