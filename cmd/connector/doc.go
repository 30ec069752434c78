// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Connector encodes sensor readings into FEAGI neuron payloads and
// ships them to a sink.
//
// Commands:
//
//	connector demo [--output FILE] [--json FILE]
//	connector inspect FILE
//	connector genome validate FILE
//	connector genome fix FILE [--output FILE]
//	connector motor [--config FILE] PAYLOAD...
//	connector run [--config FILE]
//	connector sink [--listen ADDR]
//	connector version
//
// Global flags come before the command: --env-file loads a dotenv file
// into the environment before any configuration is read, and
// --verbose enables debug logging on stderr.
//
// "run" reads one sample per line from stdin in the form
//
//	SENSOR GROUP CHANNEL VALUE
//
// for example "proximity 1 2 70.0", and sends the encoded cache every
// sensors.send_interval. It exits after a final send when stdin closes.
//
// "motor" applies recorded motor payloads to the motor areas declared
// under motors: in the config and prints each updated channel.
package main
