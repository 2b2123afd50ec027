package models

import "github.com/golang-jwt/jwt/v5"

// RoleOperator may change the status of suspicious patterns.
const RoleOperator = "operator"

// Claims defines the structure of the operator JWT claims. The operator name is the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
