package datagen

// TrainingExample is one supervised pair. It is never persisted.
type TrainingExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type GenerateRequest struct {
	Prompt        string `json:"prompt"`
	TotalExamples int    `json:"totalExamples"`
	NumAgents     int    `json:"numAgents"`
	Diverse       bool   `json:"diverse"`
}

// Role is the persona an agent writes as.
type Role struct {
	Name        string  `yaml:"name" json:"name"`
	Prompt      string  `yaml:"prompt" json:"prompt"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

const (
	MinExamples = 1
	MaxExamples = 1000
	MinAgents   = 1
	MaxAgents   = 10
)
