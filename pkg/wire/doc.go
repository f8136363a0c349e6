// Package wire implements the line protocol between the arena controller
// and a host.
//
// Every message is one line terminated by '\n'. The host sends JSON
// documents: an array is a command [device, action, args...], an object is
// a configuration {"<port>": [records...]}. The controller sends telemetry
// frames as topic#payload, where the topic never contains '#' and the
// payload may.
//
// A trailing '\r' is ignored so the protocol works over terminals and
// serial monitors. Lines longer than the parser limit are discarded up to
// the next newline.
package wire
