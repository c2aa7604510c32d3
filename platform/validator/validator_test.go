package validator

import "testing"

type preferenceInput struct {
	AttributeType  string `validate:"required,oneof=subtheme priority_level"`
	AttributeValue string `validate:"required,max=10"`
}

func TestFieldMessagesListsEveryFailure(t *testing.T) {
	v := New()
	err := v.Struct(preferenceInput{AttributeType: "colour", AttributeValue: "much too long value"})
	msgs := FieldMessages(err)
	if len(msgs) != 2 {
		t.Fatalf("expected two field messages, got %v", msgs)
	}
	if msgs["AttributeValue"] != "failed max=10" {
		t.Fatalf("unexpected message %q", msgs["AttributeValue"])
	}
}

func TestFieldMessagesIgnoresOtherErrors(t *testing.T) {
	if msgs := FieldMessages(nil); msgs != nil {
		t.Fatalf("expected nil, got %v", msgs)
	}
}
