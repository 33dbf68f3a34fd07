package domain

import (
	"sort"
	"strings"
)

// Kind names a regulated entity kind.
type Kind string

const (
	KindMachine     Kind = "machine"
	KindComponent   Kind = "component"
	KindCalibration Kind = "calibration"
	KindWorkOrder   Kind = "work_order"
	KindSupplier    Kind = "supplier"
)

// Operation is the suffix of an audit event kind.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpSign   Operation = "SIGN"
)

type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
}

// KindSpec describes how one entity kind is stored and audited.
type KindSpec struct {
	Kind        Kind
	Table       string
	AuditPrefix string
	Fields      []FieldSpec
}

// Action returns the audit event kind for op, e.g. MCH_CREATE.
func (s KindSpec) Action(op Operation) string {
	return s.AuditPrefix + "_" + string(op)
}

func (s KindSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Resolve maps raw caller values onto the kind's declared fields. Every
// declared field is present in the result; absent or mismatched values
// resolve to nil and undeclared names are dropped. It never fails.
func (s KindSpec) Resolve(raw map[string]any) Fields {
	out := make(Fields, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := raw[f.Name]
		if !ok {
			out[f.Name] = nil
			continue
		}
		out[f.Name] = f.Type.resolve(v)
	}
	return out
}

// RequiredFields lists the mandatory field names in declaration order.
func (s KindSpec) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

var kindRegistry = map[Kind]KindSpec{
	KindMachine: {
		Kind: KindMachine, Table: "machines", AuditPrefix: "MCH",
		Fields: []FieldSpec{
			{Name: "code", Type: FieldString, Required: true},
			{Name: "name", Type: FieldString, Required: true},
			{Name: "type", Type: FieldString},
			{Name: "manufacturer", Type: FieldString},
			{Name: "model", Type: FieldString},
			{Name: "serial_number", Type: FieldString},
			{Name: "location", Type: FieldString},
			{Name: "status", Type: FieldString},
			{Name: "install_date", Type: FieldTime},
			{Name: "urs_document", Type: FieldString},
			{Name: "last_maintenance", Type: FieldTime},
			{Name: "next_maintenance", Type: FieldTime},
			{Name: "iot_device_id", Type: FieldString},
			{Name: "notes", Type: FieldString},
		},
	},
	KindComponent: {
		Kind: KindComponent, Table: "components", AuditPrefix: "CMP",
		Fields: []FieldSpec{
			{Name: "machine_id", Type: FieldInteger, Required: true},
			{Name: "code", Type: FieldString, Required: true},
			{Name: "name", Type: FieldString, Required: true},
			{Name: "type", Type: FieldString},
			{Name: "sop_document", Type: FieldString},
			{Name: "status", Type: FieldString},
			{Name: "install_date", Type: FieldTime},
			{Name: "critical", Type: FieldBool},
			{Name: "notes", Type: FieldString},
		},
	},
	KindCalibration: {
		Kind: KindCalibration, Table: "calibrations", AuditPrefix: "CAL",
		Fields: []FieldSpec{
			{Name: "component_id", Type: FieldInteger, Required: true},
			{Name: "supplier_id", Type: FieldInteger},
			{Name: "calibration_date", Type: FieldTime, Required: true},
			{Name: "next_due", Type: FieldTime},
			{Name: "result", Type: FieldString},
			{Name: "measured_value", Type: FieldDecimal},
			{Name: "tolerance", Type: FieldDecimal},
			{Name: "certificate", Type: FieldString},
			{Name: "status", Type: FieldString},
			{Name: "comment", Type: FieldString},
		},
	},
	KindWorkOrder: {
		Kind: KindWorkOrder, Table: "work_orders", AuditPrefix: "WO",
		Fields: []FieldSpec{
			{Name: "machine_id", Type: FieldInteger, Required: true},
			{Name: "component_id", Type: FieldInteger},
			{Name: "title", Type: FieldString, Required: true},
			{Name: "description", Type: FieldString},
			{Name: "type", Type: FieldString},
			{Name: "priority", Type: FieldString},
			{Name: "status", Type: FieldString},
			{Name: "assigned_to", Type: FieldInteger},
			{Name: "due_date", Type: FieldTime},
			{Name: "closed_at", Type: FieldTime},
			{Name: "result", Type: FieldString},
		},
	},
	KindSupplier: {
		Kind: KindSupplier, Table: "suppliers", AuditPrefix: "SUP",
		Fields: []FieldSpec{
			{Name: "name", Type: FieldString, Required: true},
			{Name: "vat_number", Type: FieldString},
			{Name: "contact", Type: FieldString},
			{Name: "email", Type: FieldString},
			{Name: "qualified", Type: FieldBool},
			{Name: "qualified_until", Type: FieldTime},
		},
	},
}

func LookupKind(k Kind) (KindSpec, bool) {
	spec, ok := kindRegistry[Kind(strings.TrimSpace(string(k)))]
	return spec, ok
}

// KindByTable resolves the kind stored in table.
func KindByTable(table string) (KindSpec, bool) {
	for _, spec := range kindRegistry {
		if spec.Table == table {
			return spec, true
		}
	}
	return KindSpec{}, false
}

// Kinds returns every registered kind ordered by name.
func Kinds() []KindSpec {
	out := make([]KindSpec, 0, len(kindRegistry))
	for _, spec := range kindRegistry {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
