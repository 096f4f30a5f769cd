package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMultiStatements(t *testing.T) {
	assert.Equal(t,
		"user:pw@tcp(localhost:3306)/app?multiStatements=true",
		withMultiStatements("user:pw@tcp(localhost:3306)/app"))

	assert.Equal(t,
		"user:pw@tcp(localhost:3306)/app?parseTime=true&multiStatements=true",
		withMultiStatements("user:pw@tcp(localhost:3306)/app?parseTime=true"))

	// already set (either value) is left alone
	assert.Equal(t,
		"user:pw@tcp(localhost:3306)/app?multiStatements=false",
		withMultiStatements("user:pw@tcp(localhost:3306)/app?multiStatements=false"))
}
