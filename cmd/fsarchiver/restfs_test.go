package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestSpecFullForm(t *testing.T) {
	ds, err := parseDestSpec("id=1,dest=/dev/sdb1,mkfs=ext4,mkfsopt=-F,label=backup,uuid=abc-123")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.id)
	assert.Equal(t, "/dev/sdb1", ds.dest)
	assert.Equal(t, "ext4", ds.mkfs)
	assert.Equal(t, "-F", ds.mkfsOpt)
	assert.Equal(t, "backup", ds.label)
	assert.Equal(t, "abc-123", ds.uuid)
}

func TestParseDestSpecRequiresIDAndDest(t *testing.T) {
	_, err := parseDestSpec("dest=/dev/sdb1")
	assert.Error(t, err)

	_, err = parseDestSpec("id=0")
	assert.Error(t, err)
}

func TestParseDestSpecRejectsUnknownKey(t *testing.T) {
	_, err := parseDestSpec("id=0,dest=/dev/sdb1,bogus=x")
	assert.Error(t, err)
}

func TestParseDestSpecRejectsMalformedPair(t *testing.T) {
	_, err := parseDestSpec("id=0,dest")
	assert.Error(t, err)
}
