package embedder

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultVertexModel is used when no model name is configured.
const DefaultVertexModel = "text-embedding-005"

// taskType marks stored chunks and search queries alike so both land in the
// same space.
const taskType = "RETRIEVAL_DOCUMENT"

// VertexEmbedder calls a Vertex AI text embedding model through the
// prediction API.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	model    string
	endpoint string
}

// NewVertexEmbedder dials the regional prediction endpoint. Credentials come
// from the environment (application default credentials).
func NewVertexEmbedder(ctx context.Context, project, location, model string, opts ...option.ClientOption) (*VertexEmbedder, error) {
	if project == "" {
		return nil, fmt.Errorf("vertex embedder: project is required")
	}
	if location == "" {
		location = "us-central1"
	}
	if model == "" {
		model = DefaultVertexModel
	}

	opts = append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)),
	}, opts...)
	client, err := aiplatform.NewPredictionClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex prediction client: %w", err)
	}

	return &VertexEmbedder{
		client:   client,
		model:    model,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", project, location, model),
	}, nil
}

// Model returns the publisher model name.
func (v *VertexEmbedder) Model() string { return v.model }

// Embed sends all texts in one predict call, one instance per text.
func (v *VertexEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	instances, err := vertexInstances(texts)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  v.endpoint,
		Instances: instances,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex predict: %w", err)
	}

	out, err := vertexEmbeddings(resp.GetPredictions())
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(texts), len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (v *VertexEmbedder) Close() error {
	return v.client.Close()
}

func vertexInstances(texts []string) ([]*structpb.Value, error) {
	instances := make([]*structpb.Value, 0, len(texts))
	for _, t := range texts {
		s, err := structpb.NewStruct(map[string]any{
			"content":   t,
			"task_type": taskType,
		})
		if err != nil {
			return nil, fmt.Errorf("build vertex instance: %w", err)
		}
		instances = append(instances, structpb.NewStructValue(s))
	}
	return instances, nil
}

func vertexEmbeddings(predictions []*structpb.Value) ([][]float32, error) {
	out := make([][]float32, 0, len(predictions))
	for i, p := range predictions {
		values := p.GetStructValue().GetFields()["embeddings"].GetStructValue().GetFields()["values"].GetListValue().GetValues()
		if len(values) == 0 {
			return nil, fmt.Errorf("vertex prediction %d has no embedding values", i)
		}
		vec := make([]float32, len(values))
		for j, x := range values {
			vec[j] = float32(x.GetNumberValue())
		}
		out = append(out, vec)
	}
	return out, nil
}
