package classifier

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// Marshal serialises a fitted classifier together with its kind.
func Marshal(c Classifier) ([]byte, error) {
	if c.NumFeatures() == 0 {
		return nil, fmt.Errorf("marshal %s: %w", c.Name(), errNotFitted)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", c.Name(), err)
	}
	return json.Marshal(envelope{Kind: c.Name(), Model: body})
}

// Unmarshal restores a classifier written by Marshal.
func Unmarshal(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model envelope: %w", err)
	}

	var c Classifier
	switch env.Kind {
	case NameLogistic:
		c = &Logistic{}
	case NameForest:
		c = &Forest{}
	case NameSVM:
		c = &SVM{}
	case NameBoosting:
		c = &Boosting{}
	case NameKNN:
		c = &KNN{}
	default:
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Model, c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	if c.NumFeatures() == 0 {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, errNotFitted)
	}
	return c, nil
}
