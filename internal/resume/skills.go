package resume

import "strings"

// skillKeywords is the fallback vocabulary scanned when an upload arrives
// without a structured parsed payload.
var skillKeywords = []string{
	"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript",
	"React", "Vue", "Angular", "Node.js", "Docker", "Kubernetes",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "AWS", "Azure", "GCP",
	"GraphQL", "REST", "Microservices", "Git", "CI/CD",
	"Machine Learning", "Data Science", "DevOps", "Terraform", "Kafka",
}

// ExtractSkills scans extracted resume text for known skill keywords. It is
// a keyword fallback, not a parser: the structured payload from the upstream
// extraction service always wins when present.
func ExtractSkills(text string) []string {
	textLower := strings.ToLower(text)
	var skills []string
	for _, skill := range skillKeywords {
		if strings.Contains(textLower, strings.ToLower(skill)) {
			skills = append(skills, skill)
		}
	}
	return skills
}
