package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
	"smartfind/internal/domain"
)

// NoTopic is returned when no category matches.
const NoTopic = -1

// minTextLen is the trimmed length below which a text is not classified.
const minTextLen = 10

// Topic is one category and the keywords that vote for it.
type Topic struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type topicsFile struct {
	Topics []Topic `yaml:"topics"`
}

// DefaultTopics are used when the model directory holds no topics file.
func DefaultTopics() []Topic {
	return []Topic{
		{ID: 0, Name: "Finance", Keywords: []string{"finance", "money", "budget", "payment", "invoice", "expense", "account", "bank"}},
		{ID: 1, Name: "Work", Keywords: []string{"work", "project", "task", "meeting", "deadline", "report", "email", "client"}},
		{ID: 2, Name: "Personal", Keywords: []string{"personal", "diary", "private", "note", "memo", "reminder", "family", "friend"}},
		{ID: 3, Name: "Research", Keywords: []string{"research", "paper", "study", "analysis", "data", "experiment", "theory", "result"}},
	}
}

// KeywordClassifier scores each topic by the fraction of its keywords that
// occur in the text.
type KeywordClassifier struct {
	topics []Topic
}

func NewKeywordClassifier(topics []Topic) *KeywordClassifier {
	normalized := make([]Topic, 0, len(topics))
	for _, t := range topics {
		kws := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		if len(kws) > 0 {
			normalized = append(normalized, Topic{ID: t.ID, Name: t.Name, Keywords: kws})
		}
	}
	return &KeywordClassifier{topics: normalized}
}

// Load reads the topics file from modelDir. A missing file falls back to
// DefaultTopics; an unreadable or invalid one is domain.ErrModelUnavailable.
func Load(modelDir, fileName string) (*KeywordClassifier, error) {
	if modelDir == "" || fileName == "" {
		return NewKeywordClassifier(DefaultTopics()), nil
	}

	path := filepath.Join(modelDir, fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewKeywordClassifier(DefaultTopics()), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrModelUnavailable, path, err)
	}

	var tf topicsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrModelUnavailable, path, err)
	}
	c := NewKeywordClassifier(tf.Topics)
	if len(c.topics) == 0 {
		return nil, fmt.Errorf("%w: %s defines no topics", domain.ErrModelUnavailable, path)
	}
	return c, nil
}

// Classify returns the best topic and its confidence. Ties go to the topic
// listed first.
func (c *KeywordClassifier) Classify(text string) (int, float64) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minTextLen {
		return NoTopic, 0
	}

	lower := strings.ToLower(text)
	best, bestScore := NoTopic, 0.0
	for _, t := range c.topics {
		matches := 0
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(t.Keywords))
		if score > bestScore {
			best, bestScore = t.ID, score
		}
	}
	return best, bestScore
}

// TopicName returns the name of a topic id, or "" when unknown.
func (c *KeywordClassifier) TopicName(id int) string {
	for _, t := range c.topics {
		if t.ID == id {
			return t.Name
		}
	}
	return ""
}

