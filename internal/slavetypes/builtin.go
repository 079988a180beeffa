package slavetypes

import "github.com/KevinKickass/ecconf/internal/records"

const beckhoffVID = 0x00000002

var stepperParams = []ModParamDesc{
	{Name: "maxCurrent", ID: 0, Type: records.ModParamU32},
	{Name: "reducedCurrent", ID: 1, Type: records.ModParamU32},
	{Name: "nominalVoltage", ID: 2, Type: records.ModParamU32},
	{Name: "coilResistance", ID: 3, Type: records.ModParamU32},
	{Name: "motorEMF", ID: 4, Type: records.ModParamU32},
	{Name: "motorFullSteps", ID: 5, Type: records.ModParamU32},
	{Name: "encoderIncrements", ID: 6, Type: records.ModParamU32},
	{Name: "startVelocity", ID: 7, Type: records.ModParamU32},
	{Name: "driveOnDelay", ID: 8, Type: records.ModParamU32},
	{Name: "driveOffDelay", ID: 9, Type: records.ModParamU32},
}

var servoParams = []ModParamDesc{
	{Name: "enableFB2", ID: 0, Type: records.ModParamBit},
	{Name: "enableDiag", ID: 1, Type: records.ModParamBit},
}

var builtinTypes = []Type{
	{Name: Generic, Description: "raw profile, PDOs described in configuration"},

	{Name: "EK1100", VID: beckhoffVID, PID: 0x044c2c52, Description: "EtherCAT coupler"},
	{Name: "EK1101", VID: beckhoffVID, PID: 0x044d2c52, Description: "EtherCAT coupler with ID switch"},
	{Name: "EK1110", VID: beckhoffVID, PID: 0x04562c52, Description: "EtherCAT extension"},
	{Name: "EK1122", VID: beckhoffVID, PID: 0x04622c52, Description: "2 port EtherCAT junction"},

	{Name: "EL1008", VID: beckhoffVID, PID: 0x03f03052, Description: "8 channel digital input"},
	{Name: "EL2008", VID: beckhoffVID, PID: 0x07d83052, Description: "8 channel digital output"},
	{Name: "EL2202", VID: beckhoffVID, PID: 0x089a3052, Description: "2 channel push-pull digital output"},

	{Name: "EL7031", VID: beckhoffVID, PID: 0x1b773052, Description: "stepper motor terminal 1.5A", ModParams: stepperParams},
	{Name: "EL7041", VID: beckhoffVID, PID: 0x1b813052, Description: "stepper motor terminal 5A", ModParams: stepperParams},

	{Name: "AX5101", VID: beckhoffVID, PID: 0x13ed6012, Description: "servo drive 1 channel 1.5A", ModParams: servoParams},
	{Name: "AX5103", VID: beckhoffVID, PID: 0x13ef6012, Description: "servo drive 1 channel 3A", ModParams: servoParams},
	{Name: "AX5106", VID: beckhoffVID, PID: 0x13f26012, Description: "servo drive 1 channel 6A", ModParams: servoParams},
	{Name: "AX5203", VID: beckhoffVID, PID: 0x14536012, Description: "servo drive 2 channel 3A", ModParams: servoParams},
	{Name: "AX5206", VID: beckhoffVID, PID: 0x14566012, Description: "servo drive 2 channel 6A", ModParams: servoParams},
}
