package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/ai"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/schema"
)

type extractEntity struct {
	Name       string      `json:"name" jsonschema_description:"Entity name exactly as written in the text"`
	Type       string      `json:"type" jsonschema_description:"One of the allowed entity types"`
	Properties []schema.KV `json:"properties" jsonschema_description:"Properties stated in the text, using only keys allowed for the type"`
}

type extractEntitiesResponse struct {
	Entities []extractEntity `json:"entities" jsonschema_description:"Entities mentioned in the text"`
}

type extractRelation struct {
	Subject    string      `json:"subject" jsonschema_description:"Name of the subject entity from the known entity list"`
	Predicate  string      `json:"predicate" jsonschema_description:"One of the allowed relationship types"`
	Object     string      `json:"object" jsonschema_description:"Name of the object entity from the known entity list"`
	Properties []schema.KV `json:"properties" jsonschema_description:"Properties stated in the text, using only keys allowed for the relationship"`
}

type extractRelationsResponse struct {
	Relations []extractRelation `json:"relations" jsonschema_description:"Relationships stated in the text"`
}

// Extractor turns free text into schema conforming entities and triples.
// Model output is treated as untrusted: anything outside the registry is
// dropped with a warning.
type Extractor struct {
	client   ai.GraphAIClient
	registry *schema.Registry
	model    string
	backoff  util.Backoff
}

type NewExtractorParams struct {
	Client   ai.GraphAIClient
	Registry *schema.Registry
	// Model overrides the provider's extraction model.
	Model string
	// MaxRetries bounds attempts on transient failures, default 3.
	MaxRetries int
	// RetryDelay is the first backoff delay, default 500ms.
	RetryDelay time.Duration
}

func NewExtractor(params NewExtractorParams) *Extractor {
	retries := params.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	delay := params.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	reg := params.Registry
	if reg == nil {
		reg = schema.Default()
	}
	return &Extractor{
		client:   params.Client,
		registry: reg,
		model:    params.Model,
		backoff:  util.Backoff{MaxTries: retries, Delay: delay, MaxDelay: 8 * delay},
	}
}

// generate runs one structured completion, retrying transient failures.
func (x *Extractor) generate(ctx context.Context, op, name, description, prompt string, out any) error {
	_, err := util.RetryWithBackoff(ctx, x.backoff, common.IsTransient, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, x.client.GenerateCompletionWithFormat(
			ctx, name, description, prompt, out,
			ai.WithModel(x.model),
			ai.WithTemperature(0),
		)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ai.ErrMalformedResponse) {
		return common.Wrap(common.KindExtractionFormat, op, err)
	}
	return err
}

// ExtractEntities returns the entities mentioned in text. Repeated mentions
// of the same label are collapsed, keeping the first value of each property.
func (x *Extractor) ExtractEntities(ctx context.Context, text string) (*common.EntityLists, []string, error) {
	const op = "extract entities"
	if strings.TrimSpace(text) == "" {
		return nil, nil, common.Errorf(common.KindValidation, op, "empty text")
	}

	var res extractEntitiesResponse
	prompt := fmt.Sprintf(ai.ExtractEntitiesPrompt, x.registry.DescribeExtraction(), text)
	err := x.generate(ctx, op, "extract_entities", "Extract Tamil cinema entities from text.", prompt, &res)
	if err != nil {
		return nil, nil, err
	}

	lists := common.NewEntityLists()
	var warnings []string
	invalid := 0
	index := map[string]int{}
	var collected []common.ExtractedEntity

	for _, e := range res.Entities {
		mention := strings.TrimSpace(e.Name)
		if mention == "" {
			invalid++
			warnings = append(warnings, fmt.Sprintf("dropped %s entity with empty name", e.Type))
			continue
		}
		label, ok := x.registry.CanonicalLabel(e.Type)
		if !ok {
			invalid++
			warnings = append(warnings, fmt.Sprintf("dropped %q: unknown entity type %q", mention, e.Type))
			continue
		}
		props, w := x.registry.CoerceProperties(label, e.Properties)
		warnings = append(warnings, w...)

		id := label + "\x00" + strings.ToLower(mention)
		if i, seen := index[id]; seen {
			for k, v := range props {
				if _, ok := collected[i].Properties[k]; !ok {
					collected[i].Properties[k] = v
				}
			}
			continue
		}
		index[id] = len(collected)
		collected = append(collected, common.ExtractedEntity{Mention: mention, Type: label, Properties: props})
	}

	if len(res.Entities) > 0 && invalid == len(res.Entities) {
		return nil, warnings, common.Errorf(common.KindSchemaViolation, op, "none of %d extracted entities fit the schema", invalid)
	}
	for _, e := range collected {
		lists.Add(e)
	}

	logger.Debug("[Graph] extracted entities", "entities", lists.Len(), "dropped", invalid)
	return lists, warnings, nil
}

// ExtractRelations returns the relations between entities stated in text.
// No model call is made when fewer than two entities are known.
func (x *Extractor) ExtractRelations(
	ctx context.Context,
	text string,
	entities *common.EntityLists,
) ([]common.Triple, []string, error) {
	const op = "extract relations"
	if strings.TrimSpace(text) == "" {
		return nil, nil, common.Errorf(common.KindValidation, op, "empty text")
	}
	if entities.Len() < 2 {
		return nil, nil, nil
	}

	var known strings.Builder
	for _, e := range entities.All() {
		fmt.Fprintf(&known, "- %s (%s)\n", e.Mention, e.Type)
	}

	var res extractRelationsResponse
	prompt := fmt.Sprintf(ai.ExtractRelationsPrompt, x.registry.DescribeRelations(), known.String(), text)
	err := x.generate(ctx, op, "extract_relations", "Extract relationships between known Tamil cinema entities.", prompt, &res)
	if err != nil {
		return nil, nil, err
	}

	var triples []common.Triple
	var warnings []string
	invalid := 0
	seen := map[string]bool{}

	for _, r := range res.Relations {
		subject, object := strings.TrimSpace(r.Subject), strings.TrimSpace(r.Object)
		desc := fmt.Sprintf("%s -[%s]-> %s", subject, r.Predicate, object)

		predicate, ok := x.registry.CanonicalRelation(r.Predicate)
		if !ok {
			invalid++
			warnings = append(warnings, fmt.Sprintf("dropped %s: unknown relationship type %q", desc, r.Predicate))
			continue
		}
		if subject == "" || object == "" {
			invalid++
			warnings = append(warnings, fmt.Sprintf("dropped %s: missing subject or object", desc))
			continue
		}
		subj, obj := entities.Find(subject), entities.Find(object)
		if len(subj) == 0 || len(obj) == 0 {
			invalid++
			warnings = append(warnings, fmt.Sprintf("dropped %s: refers to an entity that was not extracted", desc))
			continue
		}
		if strings.EqualFold(subject, object) {
			invalid++
			warnings = append(warnings, fmt.Sprintf("dropped %s: subject and object are the same", desc))
			continue
		}

		props, w := x.registry.CoerceRelationProperties(predicate, r.Properties)
		warnings = append(warnings, w...)

		id := strings.ToLower(subject) + "\x00" + predicate + "\x00" + strings.ToLower(object)
		if seen[id] {
			continue
		}
		seen[id] = true
		triples = append(triples, common.Triple{
			Subject:    subj[0].Mention,
			Predicate:  predicate,
			Object:     obj[0].Mention,
			Properties: props,
		})
	}

	if len(res.Relations) > 0 && invalid == len(res.Relations) {
		return nil, warnings, common.Errorf(common.KindSchemaViolation, op, "none of %d extracted relations fit the schema", invalid)
	}

	logger.Debug("[Graph] extracted relations", "relations", len(triples), "dropped", invalid)
	return triples, warnings, nil
}
