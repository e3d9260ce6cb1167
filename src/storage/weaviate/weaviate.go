package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// SDK encapsulates all Weaviate operations
type SDK struct {
	client *weaviate.Client
}

// NewSDK creates a new instance of SDK
func NewSDK(client *weaviate.Client) *SDK {
	return &SDK{
		client: client,
	}
}

// NewClient builds a client from a base URL such as http://weaviate:8080.
func NewClient(rawURL string) (*weaviate.Client, error) {
	scheme, host := "http", rawURL
	if i := strings.Index(rawURL, "://"); i >= 0 {
		scheme, host = rawURL[:i], rawURL[i+3:]
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return client, nil
}

// EnsureClass creates the class when it does not exist yet. Vectors are always
// supplied by the caller, so the vectorizer is disabled and the index uses
// cosine distance.
func (w *SDK) EnsureClass(ctx context.Context, className string, properties []*models.Property) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:             className,
		Properties:        properties,
		Vectorizer:        "none",
		VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
	}

	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create Weaviate class: %w", err)
	}
	return nil
}

// VectorObject represents a single object with its id, vector and properties
type VectorObject struct {
	ID         string
	Vector     []float32
	Properties map[string]interface{}
}

// BatchAddObjects writes all objects in one batch. Any per-object error fails
// the whole call.
func (w *SDK) BatchAddObjects(ctx context.Context, className string, objects []VectorObject) error {
	objs := make([]*models.Object, len(objects))
	for i, obj := range objects {
		objs[i] = &models.Object{
			Class:      className,
			ID:         strfmt.UUID(obj.ID),
			Properties: obj.Properties,
			Vector:     obj.Vector,
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add objects: %w", err)
	}
	if len(resp) != len(objs) {
		return fmt.Errorf("batch operation returned %d results for %d objects", len(resp), len(objs))
	}
	return batchErrors(resp)
}

func batchErrors(resp []models.ObjectsGetResponse) error {
	var messages []string
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				messages = append(messages, fmt.Sprintf("%s: %s", r.ID, e.Message))
			}
		}
	}
	if len(messages) > 0 {
		return fmt.Errorf("batch rejected %d objects: %s", len(messages), strings.Join(messages, "; "))
	}
	return nil
}

// QueryConfig represents configuration for a Get query
type QueryConfig struct {
	Fields []string // Fields to return in the result
	Limit  int      // Maximum number of results
	// Vector turns the query into a nearVector search when set.
	Vector []float32
	// Equal filters on Path == Value (text) when Path is set.
	Path  string
	Value string
}

const DefaultQueryLimit = 20

// QueryResult represents a single object returned by a Get query
type QueryResult struct {
	ID         string
	Distance   float64
	Properties map[string]interface{}
}

// Query runs a Get query on a class
func (w *SDK) Query(ctx context.Context, className string, config QueryConfig) ([]QueryResult, error) {
	fields := make([]graphql.Field, 0, len(config.Fields)+1)
	for _, field := range config.Fields {
		fields = append(fields, graphql.Field{Name: field})
	}
	additional := []graphql.Field{{Name: "id"}}
	if config.Vector != nil {
		additional = append(additional, graphql.Field{Name: "distance"})
	}
	fields = append(fields, graphql.Field{Name: "_additional", Fields: additional})

	if config.Limit <= 0 {
		config.Limit = DefaultQueryLimit
	}

	get := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithLimit(config.Limit)
	if config.Vector != nil {
		get = get.WithNearVector(w.client.GraphQL().NearVectorArgBuilder().WithVector(config.Vector))
	}
	if config.Path != "" {
		get = get.WithWhere(equalText(config.Path, config.Value))
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	if err := graphQLError(result); err != nil {
		return nil, err
	}
	return parseGetResponse(result, className)
}

// DeleteWhere removes every object whose path equals value.
func (w *SDK) DeleteWhere(ctx context.Context, className, path, value string) (int64, error) {
	resp, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(equalText(path, value)).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete objects: %w", err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	if resp.Results.Failed > 0 {
		return resp.Results.Successful, fmt.Errorf("failed to delete %d of %d objects", resp.Results.Failed, resp.Results.Matches)
	}
	return resp.Results.Successful, nil
}

// Count returns the number of objects in a class.
func (w *SDK) Count(ctx context.Context, className string) (int, error) {
	result, err := w.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate objects: %w", err)
	}
	if err := graphQLError(result); err != nil {
		return 0, err
	}
	return parseCount(result, className)
}

// Ready reports whether the Weaviate node accepts requests.
func (w *SDK) Ready(ctx context.Context) error {
	ready, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check weaviate readiness: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

func equalText(path, value string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{path}).
		WithOperator(filters.Equal).
		WithValueText(value)
}

func graphQLError(result *models.GraphQLResponse) error {
	if result == nil || len(result.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		if e != nil {
			messages = append(messages, e.Message)
		}
	}
	return fmt.Errorf("graphql error: %s", strings.Join(messages, "; "))
}

func parseGetResponse(result *models.GraphQLResponse, className string) ([]QueryResult, error) {
	queryResults := []QueryResult{}
	if result == nil {
		return queryResults, nil
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return queryResults, nil
	}
	objects, ok := data[className].([]interface{})
	if !ok {
		return queryResults, nil
	}

	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected object type %T", obj)
		}

		// Create properties map excluding _additional
		properties := make(map[string]interface{}, len(objMap))
		for k, v := range objMap {
			if k != "_additional" {
				properties[k] = v
			}
		}

		qr := QueryResult{Properties: properties}
		if additional, ok := objMap["_additional"].(map[string]interface{}); ok {
			qr.ID, _ = additional["id"].(string)
			qr.Distance, _ = additional["distance"].(float64)
		}
		queryResults = append(queryResults, qr)
	}

	return queryResults, nil
}

func parseCount(result *models.GraphQLResponse, className string) (int, error) {
	data, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate response has no data")
	}
	groups, ok := data[className].([]interface{})
	if !ok || len(groups) == 0 {
		// Empty classes aggregate to no groups.
		return 0, nil
	}
	group, ok := groups[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate group type %T", groups[0])
	}
	meta, ok := group["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate response has no meta")
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("aggregate count has type %T", meta["count"])
	}
	return int(count), nil
}
