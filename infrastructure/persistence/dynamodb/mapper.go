package dynamodb

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/angryss/idp/domain/core/valueobjects"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// timeFormat is the canonical timestamp form stored in items. Nanoseconds
// are zero-padded to a fixed width so the string ordering of two timestamps
// matches their chronological ordering, which range-key queries rely on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders a timestamp in its canonical byte-comparable form.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime accepts the canonical form and plain RFC 3339 written by older
// records.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// formatID renders an identifier in its canonical string form.
func formatID(id uuid.UUID) string {
	return id.String()
}

// parseID converts the stored partition key back into an identifier.
func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, pkgerrors.NewValidationError(fmt.Sprintf("malformed identifier %q", s)).WithCause(err)
	}
	return id, nil
}

// formatBool renders a flag as a string attribute so it can serve as a
// secondary-index hash key (index keys cannot be BOOL).
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBool(s string) bool {
	return s == "true"
}

// configToAttribute converts a configuration document into a Map attribute.
// An empty document becomes NULL, matching the relational backend's NULL
// column.
func configToAttribute(doc valueobjects.ConfigDoc) (types.AttributeValue, error) {
	if len(doc) == 0 {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return valueToAttribute(valueobjects.Map(doc))
}

// attributeToConfig converts a stored Map attribute back into a document.
func attributeToConfig(av types.AttributeValue) (valueobjects.ConfigDoc, error) {
	if av == nil {
		return nil, nil
	}
	if _, isNull := av.(*types.AttributeValueMemberNULL); isNull {
		return nil, nil
	}
	v, err := attributeToValue(av)
	if err != nil {
		return nil, err
	}
	if v.Kind() != valueobjects.KindMap {
		return nil, pkgerrors.NewValidationError("configuration attribute is not a map")
	}
	return valueobjects.ConfigDoc(v.MapValue()), nil
}

// valueToAttribute converts one configuration value. The switch is
// exhaustive over the closed set of value kinds.
func valueToAttribute(v valueobjects.ConfigValue) (types.AttributeValue, error) {
	switch v.Kind() {
	case valueobjects.KindNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case valueobjects.KindString:
		return &types.AttributeValueMemberS{Value: v.StringValue()}, nil
	case valueobjects.KindNumber:
		return &types.AttributeValueMemberN{Value: v.NumberText()}, nil
	case valueobjects.KindBool:
		return &types.AttributeValueMemberBOOL{Value: v.BoolValue()}, nil
	case valueobjects.KindList:
		items := v.ListValue()
		converted := make([]types.AttributeValue, 0, len(items))
		for _, item := range items {
			av, err := valueToAttribute(item)
			if err != nil {
				return nil, err
			}
			converted = append(converted, av)
		}
		return &types.AttributeValueMemberL{Value: converted}, nil
	case valueobjects.KindMap:
		m := v.MapValue()
		converted := make(map[string]types.AttributeValue, len(m))
		for key, item := range m {
			av, err := valueToAttribute(item)
			if err != nil {
				return nil, err
			}
			converted[key] = av
		}
		return &types.AttributeValueMemberM{Value: converted}, nil
	default:
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unknown configuration value kind %v", v.Kind()))
	}
}

// attributeToValue converts a stored attribute back into a configuration
// value, rejecting shapes outside the closed set.
func attributeToValue(av types.AttributeValue) (valueobjects.ConfigValue, error) {
	switch t := av.(type) {
	case *types.AttributeValueMemberNULL:
		return valueobjects.Null(), nil
	case *types.AttributeValueMemberS:
		return valueobjects.String(t.Value), nil
	case *types.AttributeValueMemberN:
		return valueobjects.Number(t.Value)
	case *types.AttributeValueMemberBOOL:
		return valueobjects.Bool(t.Value), nil
	case *types.AttributeValueMemberL:
		items := make([]valueobjects.ConfigValue, 0, len(t.Value))
		for _, item := range t.Value {
			cv, err := attributeToValue(item)
			if err != nil {
				return valueobjects.ConfigValue{}, err
			}
			items = append(items, cv)
		}
		return valueobjects.List(items...), nil
	case *types.AttributeValueMemberM:
		m := make(map[string]valueobjects.ConfigValue, len(t.Value))
		for key, item := range t.Value {
			cv, err := attributeToValue(item)
			if err != nil {
				return valueobjects.ConfigValue{}, err
			}
			m[key] = cv
		}
		return valueobjects.Map(m), nil
	default:
		return valueobjects.ConfigValue{}, pkgerrors.NewValidationError(
			fmt.Sprintf("unsupported attribute type %T in configuration", av))
	}
}
