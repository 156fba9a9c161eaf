package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/shiftdesk/shiftdesk/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	require.NotPanics(t, main)
}
