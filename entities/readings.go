package entities

// ReadingKind maps a device reading label to the canonical measurement type,
// its unit and the display name used when the owning sensor is created.
type ReadingKind struct {
	Label      string
	Type       string
	Unit       string
	SensorName string
}

// ReadingKinds lists every label a device submits, in the column order used
// by reports. Labels are the wire names sent by the field firmware.
var ReadingKinds = []ReadingKind{
	{Label: "temperatura", Type: "ambient_temp", Unit: "°C", SensorName: "Ambient temperature"},
	{Label: "humedad_relativa", Type: "relative_humidity", Unit: "%", SensorName: "Relative humidity"},
	{Label: "humedad", Type: "humidity", Unit: "%", SensorName: "Substrate humidity"},
	{Label: "ph", Type: "ph", Unit: "pH", SensorName: "pH"},
	{Label: "cov", Type: "cov", Unit: "ppm", SensorName: "Volatile organic compounds"},
	{Label: "co2", Type: "co2", Unit: "ppm", SensorName: "CO2"},
	{Label: "temperatura-cacao", Type: "cocoa_temp", Unit: "°C", SensorName: "Cacao mass temperature"},
}

var readingKindsByLabel = func() map[string]ReadingKind {
	m := make(map[string]ReadingKind, len(ReadingKinds))
	for _, k := range ReadingKinds {
		m[k.Label] = k
	}
	return m
}()

// LookupReading resolves a wire label.
func LookupReading(label string) (ReadingKind, bool) {
	k, ok := readingKindsByLabel[label]
	return k, ok
}

// MeasurementTypes returns the canonical type tags in report order.
func MeasurementTypes() []string {
	types := make([]string, len(ReadingKinds))
	for i, k := range ReadingKinds {
		types[i] = k.Type
	}
	return types
}
