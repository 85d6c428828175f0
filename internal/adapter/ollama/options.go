package ollama

import "encoding/json"

// GenerationOptions are the sampling parameters sent with every request.
// A nil field is omitted so the backend default applies; a field set to
// zero is sent as zero.
type GenerationOptions struct {
	Temperature      *float64 `json:"temperature,omitempty" toml:"temperature"`
	TopP             *float64 `json:"top_p,omitempty" toml:"top_p"`
	TopK             *int     `json:"top_k,omitempty" toml:"top_k"`
	MaxTokens        *int     `json:"max_tokens,omitempty" toml:"max_tokens"`
	Stop             []string `json:"stop,omitempty" toml:"stop"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty" toml:"repeat_penalty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" toml:"presence_penalty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" toml:"frequency_penalty"`
}

// Float returns a pointer to v, for building GenerationOptions.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for building GenerationOptions.
func Int(v int) *int { return &v }

// DefaultOptions returns the options used for chat requests.
func DefaultOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:      Float(0.7),
		TopP:             Float(0.9),
		TopK:             Int(40),
		MaxTokens:        Int(1024),
		Stop:             []string{"</s>", "\nUser:", "\n\nUser:"},
		RepeatPenalty:    Float(1.1),
		PresencePenalty:  Float(0.1),
		FrequencyPenalty: Float(0.1),
	}
}

// Merge returns o with every field set in override applied, zero values
// included.
func (o GenerationOptions) Merge(override GenerationOptions) GenerationOptions {
	if override.Temperature != nil {
		o.Temperature = Float(*override.Temperature)
	}
	if override.TopP != nil {
		o.TopP = Float(*override.TopP)
	}
	if override.TopK != nil {
		o.TopK = Int(*override.TopK)
	}
	if override.MaxTokens != nil {
		o.MaxTokens = Int(*override.MaxTokens)
	}
	if override.Stop != nil {
		o.Stop = append([]string{}, override.Stop...)
	}
	if override.RepeatPenalty != nil {
		o.RepeatPenalty = Float(*override.RepeatPenalty)
	}
	if override.PresencePenalty != nil {
		o.PresencePenalty = Float(*override.PresencePenalty)
	}
	if override.FrequencyPenalty != nil {
		o.FrequencyPenalty = Float(*override.FrequencyPenalty)
	}
	return o
}

// MarshalJSON also emits max_tokens as num_predict, the name Ollama reads.
func (o GenerationOptions) MarshalJSON() ([]byte, error) {
	type plain GenerationOptions
	return json.Marshal(struct {
		plain
		NumPredict *int `json:"num_predict,omitempty"`
	}{plain(o), o.MaxTokens})
}
