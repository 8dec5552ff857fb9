package judge

var CPUModel = cpuModel
