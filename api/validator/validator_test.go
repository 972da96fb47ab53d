package validator

import (
	"strings"
	"testing"
)

type TestStruct struct {
	UserID   string `validate:"required"`
	Limit    int    `validate:"gte=0,lte=100"`
	Optional string
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
		fields  []string
	}{
		{
			name: "Valid struct",
			input: TestStruct{
				UserID: "u1",
				Limit:  50,
			},
			wantErr: false,
		},
		{
			name: "Missing required field",
			input: TestStruct{
				Limit: 50,
			},
			wantErr: true,
			fields:  []string{"UserID"},
		},
		{
			name: "Limit out of range",
			input: TestStruct{
				UserID: "u1",
				Limit:  500,
			},
			wantErr: true,
			fields:  []string{"Limit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := v.ValidateStruct(tt.input)

			if tt.wantErr && len(errors) == 0 {
				t.Error("ValidateStruct() expected errors but got none")
				return
			}

			if !tt.wantErr && len(errors) > 0 {
				t.Errorf("ValidateStruct() got unexpected errors: %v", errors)
				return
			}

			for _, expectedField := range tt.fields {
				found := false
				for _, err := range errors {
					if err.Field == expectedField {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected validation error for field %s, but got none", expectedField)
				}
			}
		})
	}
}

func TestValidator_ExactlyOne(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		fields  map[string]string
		wantErr bool
	}{
		{
			name:    "One field set",
			fields:  map[string]string{"text": "hello", "image_base64": "", "audio_base64": ""},
			wantErr: false,
		},
		{
			name:    "No fields set",
			fields:  map[string]string{"text": "", "image_base64": "", "audio_base64": ""},
			wantErr: true,
		},
		{
			name:    "Two fields set",
			fields:  map[string]string{"text": "hello", "image_base64": "abc", "audio_base64": ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := v.ExactlyOne(tt.fields)

			if tt.wantErr && len(errors) == 0 {
				t.Error("ExactlyOne() expected errors but got none")
			}

			if !tt.wantErr && len(errors) > 0 {
				t.Errorf("ExactlyOne() got unexpected errors: %v", errors)
			}
		})
	}
}

func TestValidator_ExactlyOne_messageNamesAllFields(t *testing.T) {
	v := New()

	errors := v.ExactlyOne(map[string]string{"text": "", "image_base64": ""})
	if len(errors) != 1 {
		t.Fatalf("Got %d errors, want 1", len(errors))
	}
	msg, ok := errors[0].Message.(string)
	if !ok {
		t.Fatalf("Message is %T, want string", errors[0].Message)
	}
	for _, name := range []string{"text", "image_base64"} {
		if !strings.Contains(msg, name) {
			t.Errorf("Message %q does not mention %s", msg, name)
		}
	}
}

func TestNew(t *testing.T) {
	v := New()
	if v == nil || v.cli == nil {
		t.Error("New() returned invalid validator")
	}
}
