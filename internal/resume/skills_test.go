package resume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSkills(t *testing.T) {
	text := `Jane Doe
Senior Engineer at Acme

Built services in Go with PostgreSQL and Redis, deployed on Kubernetes.`

	skills := ExtractSkills(text)
	assert.Contains(t, skills, "Go")
	assert.Contains(t, skills, "PostgreSQL")
	assert.Contains(t, skills, "Redis")
	assert.Contains(t, skills, "Kubernetes")
	assert.NotContains(t, skills, "Java")
}

func TestExtractSkillsEmpty(t *testing.T) {
	assert.Empty(t, ExtractSkills("no technology words here"))
}
