package protocol

import "strconv"

// DataType identifies the kind of payload carried by a decoded device message.
// Values 0..255 mirror the band firmware's data type table; values above 255
// are synthesised for frames whose header is not recognised.
type DataType int

const (
	GetDeviceTime                DataType = 0
	SetDeviceTime                DataType = 1
	GetPersonalInfo              DataType = 2
	SetPersonalInfo              DataType = 3
	GetDeviceInfo                DataType = 4
	SetDeviceInfo                DataType = 5
	SetDeviceID                  DataType = 6
	GetDeviceGoal                DataType = 7
	SetDeviceGoal                DataType = 8
	GetDeviceBattery             DataType = 9
	GetDeviceMacAddress          DataType = 10
	GetDeviceVersion             DataType = 11
	FactoryReset                 DataType = 12
	MCUReset                     DataType = 13
	MotorVibration               DataType = 14
	GetDeviceName                DataType = 15
	SetDeviceName                DataType = 16
	GetAutomaticMonitoring       DataType = 17
	SetAutomaticMonitoring       DataType = 18
	GetAlarmClock                DataType = 19
	SetAlarmClock                DataType = 20
	DeleteAllAlarmClock          DataType = 21
	GetSedentaryReminder         DataType = 22
	SetSedentaryReminder         DataType = 23
	RealTimeStep                 DataType = 24
	TotalActivityData            DataType = 25
	DetailActivityData           DataType = 26
	DetailSleepData              DataType = 27
	DynamicHR                    DataType = 28
	StaticHR                     DataType = 29
	ActivityModeData             DataType = 30
	EnterActivityMode            DataType = 31
	QuitActivityMode             DataType = 32
	DeviceSendDataToAPP          DataType = 33
	EnterTakePhotoMode           DataType = 34
	StartTakePhoto               DataType = 35
	StopTakePhoto                DataType = 36
	BackHomeView                 DataType = 37
	HRVData                      DataType = 38
	GPSData                      DataType = 39
	SetSocialDistanceReminder    DataType = 40
	GetSocialDistanceReminder    DataType = 41
	AutomaticSpo2Data            DataType = 42
	ManualSpo2Data               DataType = 43
	FindMobilePhone              DataType = 44
	TemperatureData              DataType = 45
	AxillaryTemperatureData      DataType = 46
	SOS                          DataType = 47
	ECGHistoryData               DataType = 48
	StartECG                     DataType = 49
	StopECG                      DataType = 50
	ECGRawData                   DataType = 51
	ECGSuccessResult             DataType = 52
	ECGStatus                    DataType = 53
	ECGFailed                    DataType = 54
	DeviceMeasurementHR          DataType = 55
	DeviceMeasurementHRV         DataType = 56
	DeviceMeasurementSpo2        DataType = 57
	DeviceMeasurementTemperature DataType = 58
	LockScreen                   DataType = 59
	ClickYesWhenUnLockScreen     DataType = 60
	ClickNoWhenUnLockScreen      DataType = 61
	SetWeather                   DataType = 62
	OpenRRInterval               DataType = 63
	CloseRRInterval              DataType = 64
	RealtimeRRIntervalData       DataType = 65
	RealtimePPIData              DataType = 66
	RealtimePPGData              DataType = 67
	PPGStartSucceeded            DataType = 68
	PPGStartFailed               DataType = 69
	PPGResult                    DataType = 70
	PPGStop                      DataType = 71
	PPGQuit                      DataType = 72
	PPGMeasurementProgress       DataType = 73
	ClearAllHistoryData          DataType = 74
	SetMenstruationInfo          DataType = 75
	SetPregnancyInfo             DataType = 76
	SetBloodPressureCalibration  DataType = 77
	GetBloodPressureCalibration  DataType = 78
	DataError                    DataType = 255

	// unknownBase offsets header bytes that have no entry in the type table,
	// so synthesised codes never collide with firmware codes.
	unknownBase DataType = 256
)

var typeNames = map[DataType]string{
	GetDeviceTime:                "GetDeviceTime",
	SetDeviceTime:                "SetDeviceTime",
	GetPersonalInfo:              "GetPersonalInfo",
	SetPersonalInfo:              "SetPersonalInfo",
	GetDeviceInfo:                "GetDeviceInfo",
	SetDeviceInfo:                "SetDeviceInfo",
	SetDeviceID:                  "SetDeviceID",
	GetDeviceGoal:                "GetDeviceGoal",
	SetDeviceGoal:                "SetDeviceGoal",
	GetDeviceBattery:             "GetDeviceBattery",
	GetDeviceMacAddress:          "GetDeviceMacAddress",
	GetDeviceVersion:             "GetDeviceVersion",
	FactoryReset:                 "FactoryReset",
	MCUReset:                     "MCUReset",
	MotorVibration:               "MotorVibration",
	GetDeviceName:                "GetDeviceName",
	SetDeviceName:                "SetDeviceName",
	GetAutomaticMonitoring:       "GetAutomaticMonitoring",
	SetAutomaticMonitoring:       "SetAutomaticMonitoring",
	GetAlarmClock:                "GetAlarmClock",
	SetAlarmClock:                "SetAlarmClock",
	DeleteAllAlarmClock:          "DeleteAllAlarmClock",
	GetSedentaryReminder:         "GetSedentaryReminder",
	SetSedentaryReminder:         "SetSedentaryReminder",
	RealTimeStep:                 "RealTimeStep",
	TotalActivityData:            "TotalActivityData",
	DetailActivityData:           "DetailActivityData",
	DetailSleepData:              "DetailSleepData",
	DynamicHR:                    "DynamicHR",
	StaticHR:                     "StaticHR",
	ActivityModeData:             "ActivityModeData",
	EnterActivityMode:            "EnterActivityMode",
	QuitActivityMode:             "QuitActivityMode",
	DeviceSendDataToAPP:          "DeviceSendDataToAPP",
	EnterTakePhotoMode:           "EnterTakePhotoMode",
	StartTakePhoto:               "StartTakePhoto",
	StopTakePhoto:                "StopTakePhoto",
	BackHomeView:                 "BackHomeView",
	HRVData:                      "HRVData",
	GPSData:                      "GPSData",
	SetSocialDistanceReminder:    "SetSocialDistanceReminder",
	GetSocialDistanceReminder:    "GetSocialDistanceReminder",
	AutomaticSpo2Data:            "AutomaticSpo2Data",
	ManualSpo2Data:               "ManualSpo2Data",
	FindMobilePhone:              "FindMobilePhone",
	TemperatureData:              "TemperatureData",
	AxillaryTemperatureData:      "AxillaryTemperatureData",
	SOS:                          "SOS",
	ECGHistoryData:               "ECG_HistoryData",
	StartECG:                     "StartECG",
	StopECG:                      "StopECG",
	ECGRawData:                   "ECG_RawData",
	ECGSuccessResult:             "ECG_Success_Result",
	ECGStatus:                    "ECG_Status",
	ECGFailed:                    "ECG_Failed",
	DeviceMeasurementHR:          "DeviceMeasurement_HR",
	DeviceMeasurementHRV:         "DeviceMeasurement_HRV",
	DeviceMeasurementSpo2:        "DeviceMeasurement_Spo2",
	DeviceMeasurementTemperature: "DeviceMeasurement_Temperature",
	LockScreen:                   "lockScreen",
	ClickYesWhenUnLockScreen:     "clickYesWhenUnLockScreen",
	ClickNoWhenUnLockScreen:      "clickNoWhenUnLockScreen",
	SetWeather:                   "setWeather",
	OpenRRInterval:               "openRRInterval",
	CloseRRInterval:              "closeRRInterval",
	RealtimeRRIntervalData:       "realtimeRRIntervalData",
	RealtimePPIData:              "realtimePPIData",
	RealtimePPGData:              "realtimePPGData",
	PPGStartSucceeded:            "ppgStartSucessed",
	PPGStartFailed:               "ppgStartFailed",
	PPGResult:                    "ppgResult",
	PPGStop:                      "ppgStop",
	PPGQuit:                      "ppgQuit",
	PPGMeasurementProgress:       "ppgMeasurementProgress",
	ClearAllHistoryData:          "clearAllHistoryData",
	SetMenstruationInfo:          "setMenstruationInfo",
	SetPregnancyInfo:             "setPregnancyInfo",
	SetBloodPressureCalibration:  "setBloodPressureCalibration",
	GetBloodPressureCalibration:  "getBloodPressureCalibration",
	DataError:                    "DataError",
}

// TypeName returns the symbolic name of a data type.
// Codes without a known name are reported as "DataType_<n>".
func TypeName(t DataType) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "DataType_" + strconv.Itoa(int(t))
}

func (t DataType) String() string {
	return TypeName(t)
}

// IsKnown reports whether t has an entry in the firmware type table.
func (t DataType) IsKnown() bool {
	_, ok := typeNames[t]
	return ok
}

// unknownType synthesises a data type for an unrecognised frame header.
func unknownType(header byte) DataType {
	return unknownBase + DataType(header)
}
