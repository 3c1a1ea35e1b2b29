package lifecycle

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		records      Records
		want         State
		inconsistent bool
	}{
		{
			name:    "ничего нет — expired",
			records: Records{},
			want:    StateExpired,
		},
		{
			name:    "только сессия — saved",
			records: Records{HasSession: true},
			want:    StateSaved,
		},
		{
			name:    "pending сильнее сессии",
			records: Records{HasSession: true, HasPending: true},
			want:    StateCheckoutPending,
		},
		{
			name:    "пакет и индекс — delivered",
			records: Records{HasIndex: true, HasPackage: true},
			want:    StateDelivered,
		},
		{
			name:    "пакет без индекса — delivered (индекс истёк штатно)",
			records: Records{HasPackage: true},
			want:    StateDelivered,
		},
		{
			name:         "индекс без пакета — delivered с флагом несогласованности",
			records:      Records{HasIndex: true},
			want:         StateDelivered,
			inconsistent: true,
		},
		{
			name:    "доставка сильнее pending",
			records: Records{HasPending: true, HasPackage: true},
			want:    StateDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.records)
			if got.State != tt.want {
				t.Errorf("State: хотели %s, получили %s", tt.want, got.State)
			}
			if got.Inconsistent != tt.inconsistent {
				t.Errorf("Inconsistent: хотели %v, получили %v", tt.inconsistent, got.Inconsistent)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("delivered"); err != nil {
		t.Errorf("Parse(delivered): неожиданная ошибка %v", err)
	}
	if _, err := Parse("unknown"); err == nil {
		t.Error("Parse(unknown): ожидали ошибку, получили nil")
	}
}
