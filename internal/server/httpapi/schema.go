package httpapi

const schemaSDL = `
schema {
  query: Query
  mutation: Mutation
}

type Query {
  me: User
  product(id: ID!): Product
  productByName(name: String!): Product
  products(category: String, search: String, limit: Int, offset: Int, userId: ID): [Product!]!
  dish(id: ID!): Dish
  dishes(category: String, search: String, limit: Int, offset: Int, userId: ID): [Dish!]!
}

type Mutation {
  register(email: String!, password: String!, name: String): AuthPayload!
  login(email: String!, password: String!, rememberMe: Boolean): AuthPayload!
  refreshToken: AuthPayload!
  logout: Boolean!
  changePassword(currentPassword: String!, newPassword: String!): Boolean!
  handleOAuthCallback(provider: String!, code: String!): AuthPayload!
  updateProfile(name: String, avatar: String): User!

  createProduct(name: String!, category: String, description: String): Product!
  updateProduct(id: ID!, name: String, category: String, description: String): Product!
  deleteProduct(id: ID!): Product!

  createDish(name: String!, category: String, description: String): Dish!
  updateDish(id: ID!, name: String, category: String, description: String): Dish!
  deleteDish(id: ID!): Dish!
}

type AuthPayload {
  token: String!
  user: User!
}

type User {
  id: ID!
  email: String
  name: String
  avatar: String
  role: String!
  googleId: String
  githubId: String
  facebookId: String
  createdAt: String!
  updatedAt: String!
}

type Product {
  id: ID!
  name: String!
  category: String
  description: String
  userId: ID!
  createdAt: String!
  updatedAt: String!
}

type Dish {
  id: ID!
  name: String!
  category: String
  description: String
  userId: ID!
  createdAt: String!
  updatedAt: String!
}
`
