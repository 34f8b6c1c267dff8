package auth

import "golang.org/x/crypto/bcrypt"

// Cost 12 puts a single hash in the hundreds of milliseconds on current
// hardware. Raising it invalidates no stored hashes; bcrypt embeds the cost.
const bcryptCost = 12

// HashPassword derives the stored credential for a plaintext password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
