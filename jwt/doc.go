// Package jwt issues and verifies the signed access and refresh tokens minted by the
// token lifecycle engine, using configured signing keys and strict validation semantics
// suitable for low-latency verification paths.
package jwt
