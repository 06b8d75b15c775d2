package types

const SubProtocol16 = "ocpp1.6"

type AuthorizationStatus string

const (
	AuthorizationStatusAccepted     AuthorizationStatus = "Accepted"
	AuthorizationStatusBlocked      AuthorizationStatus = "Blocked"
	AuthorizationStatusExpired      AuthorizationStatus = "Expired"
	AuthorizationStatusInvalid      AuthorizationStatus = "Invalid"
	AuthorizationStatusConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

type IdTagInfo struct {
	ExpiryDate  *DateTime           `json:"expiryDate,omitempty"`
	ParentIdTag string              `json:"parentIdTag,omitempty"`
	Status      AuthorizationStatus `json:"status"`
}

func NewIdTagInfo(status AuthorizationStatus) *IdTagInfo {
	return &IdTagInfo{Status: status}
}

type ReadingContext string
type ValueFormat string
type Measurand string
type Location string
type UnitOfMeasure string

const (
	ReadingContextSampleClock           ReadingContext = "Sample.Clock"
	ReadingContextSamplePeriodic        ReadingContext = "Sample.Periodic"
	ReadingContextTransactionBegin      ReadingContext = "Transaction.Begin"
	ReadingContextTransactionEnd        ReadingContext = "Transaction.End"
	ReadingContextTrigger               ReadingContext = "Trigger"
	ValueFormatRaw                      ValueFormat    = "Raw"
	MeasurandEnergyActiveImportRegister Measurand      = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport          Measurand      = "Power.Active.Import"
	MeasurandCurrentImport              Measurand      = "Current.Import"
	MeasurandVoltage                    Measurand      = "Voltage"
	MeasurandTemperature                Measurand      = "Temperature"
	MeasurandSoC                        Measurand      = "SoC"
	LocationOutlet                      Location       = "Outlet"
	UnitOfMeasureWh                     UnitOfMeasure  = "Wh"
	UnitOfMeasureKWh                    UnitOfMeasure  = "kWh"
	UnitOfMeasureW                      UnitOfMeasure  = "W"
	UnitOfMeasureA                      UnitOfMeasure  = "A"
	UnitOfMeasureV                      UnitOfMeasure  = "V"
	UnitOfMeasureCelsius                UnitOfMeasure  = "Celsius"
	UnitOfMeasurePercent                UnitOfMeasure  = "Percent"
)

type SampledValue struct {
	Value     string         `json:"value"`
	Context   ReadingContext `json:"context,omitempty"`
	Format    ValueFormat    `json:"format,omitempty"`
	Measurand Measurand      `json:"measurand,omitempty"`
	Location  Location       `json:"location,omitempty"`
	Unit      UnitOfMeasure  `json:"unit,omitempty"`
}

type MeterValue struct {
	Timestamp    *DateTime      `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

type RemoteStartStopStatus string

const (
	RemoteStartStopStatusAccepted RemoteStartStopStatus = "Accepted"
	RemoteStartStopStatusRejected RemoteStartStopStatus = "Rejected"
)

type AvailabilityType string

const (
	AvailabilityTypeOperative   AvailabilityType = "Operative"
	AvailabilityTypeInoperative AvailabilityType = "Inoperative"
)

type AvailabilityStatus string

const (
	AvailabilityStatusAccepted  AvailabilityStatus = "Accepted"
	AvailabilityStatusRejected  AvailabilityStatus = "Rejected"
	AvailabilityStatusScheduled AvailabilityStatus = "Scheduled"
)
