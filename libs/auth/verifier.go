package auth

// Verifier checks bearer tokens. RS256 tokens carrying a kid are verified against the
// JWKS endpoint when one is configured; everything else must be HS256 with the shared secret.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
}

func (v Verifier) Verify(token string) (*Claims, error) {
	if v.JWKS != nil {
		header, err := ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := v.JWKS.Get(header.Kid)
			if err != nil {
				return nil, ErrInvalidToken
			}
			return VerifyRS256(token, pub)
		}
	}
	return ParseAndVerifyHS256(token, v.Secret)
}
