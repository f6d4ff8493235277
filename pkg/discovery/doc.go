// Package discovery finds publish/subscribe gateways on the local network
// with mDNS/DNS-SD.
//
// Gateways advertise the _mqtt._tcp service (configurable). Instances seen on
// several interfaces are merged into one Gateway whose address list holds
// every address reported.
//
// # TXT Records
//
// All keys are optional:
//   - proto: transport flavour ("mqtt" or "mqttsn")
//   - id: gateway identifier
//   - ver: firmware or broker version
package discovery
