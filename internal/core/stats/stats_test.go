package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(images ...string) *Project {
	return &Project{Services: len(images), Images: images}
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(0, nil)

	assert.Equal(t, map[string]int{
		KeyDeployments:  0,
		KeyImagesUsed:   0,
		KeyUniqueImages: 0,
		KeyMissingFiles: 0,
	}, s.Map())
}

func TestCompute_CountsServicesAndUniqueImages(t *testing.T) {
	projects := []*Project{
		project("nginx:latest", "postgres:15"),
		project("nginx:latest"),
		nil,
	}

	s := Compute(3, projects)

	assert.Equal(t, 3, s.Map()[KeyDeployments])
	assert.Equal(t, 3, s.Map()[KeyImagesUsed])
	assert.Equal(t, 2, s.Map()[KeyUniqueImages])
	assert.Equal(t, 1, s.Map()[KeyMissingFiles])
}

func TestCompute_UnresolvedProjectCountsServices(t *testing.T) {
	s := Compute(1, []*Project{{Services: 2}})

	assert.Equal(t, 2, s.Map()[KeyImagesUsed])
	assert.Equal(t, 0, s.Map()[KeyUniqueImages])
	assert.Equal(t, 0, s.Map()[KeyMissingFiles])
}

func TestCompute_Order(t *testing.T) {
	s := Compute(1, []*Project{project("redis:7")})

	require.Len(t, s, 4)
	assert.Equal(t, KeyDeployments, s[0].Key)
	assert.Equal(t, KeyImagesUsed, s[1].Key)
	assert.Equal(t, KeyUniqueImages, s[2].Key)
	assert.Equal(t, KeyMissingFiles, s[3].Key)
}

func TestLookup(t *testing.T) {
	s := Compute(2, []*Project{project("a"), project("b", "c")})

	v, err := s.Lookup("Images Used")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = s.Lookup("images used")
	var unknown *UnknownKeyError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Statistic with key 'images used' not found.", err.Error())
}
